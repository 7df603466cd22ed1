package models

// Account roles carried in access credentials.
const (
	RoleCustomer = "CUSTOMER"
	RoleOwner    = "OWNER"
	RoleDriver   = "DRIVER"
	RoleAdmin    = "ADMIN"
)
