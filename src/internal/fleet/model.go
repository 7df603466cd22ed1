package fleet

import "time"

// Vehicle statuses
const (
	VehicleActive      = "ACTIVE"
	VehicleMaintenance = "MAINTENANCE"
	VehicleInactive    = "INACTIVE"
)

// OwnerProfile marks a user as a fleet owner allowed to accept loads.
type OwnerProfile struct {
	ID          string    `json:"id" bson:"_id"`
	UserID      string    `json:"userId" bson:"user_id"`
	CompanyName string    `json:"companyName,omitempty" bson:"company_name,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
}

// DriverProfile carries the eligibility snapshot read before assignment.
// ActiveLoadID is the driver claim: set while the driver is bound to a load.
type DriverProfile struct {
	ID            string    `json:"id" bson:"_id"`
	UserID        string    `json:"userId" bson:"user_id"`
	LicenseNumber string    `json:"licenseNumber,omitempty" bson:"license_number,omitempty"`
	IsAvailable   bool      `json:"isAvailable" bson:"is_available"`
	ActiveLoadID  *string   `json:"activeLoadId,omitempty" bson:"active_load_id,omitempty"`
	Rating        float64   `json:"rating" bson:"rating"`
	TotalTrips    int64     `json:"totalTrips" bson:"total_trips"`
	CreatedAt     time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updated_at"`
}

type Vehicle struct {
	ID        string    `json:"id" bson:"_id"`
	Number    string    `json:"number" bson:"number"`
	Type      string    `json:"type" bson:"type"`
	Capacity  float64   `json:"capacity" bson:"capacity"`
	Status    string    `json:"status" bson:"status"`
	OwnerID   string    `json:"ownerId" bson:"owner_id"`
	DriverID  *string   `json:"driverId,omitempty" bson:"driver_id,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

type VehicleRequest struct {
	Number   string  `json:"number"`
	Type     string  `json:"type"`
	Capacity float64 `json:"capacity"`
	DriverID string  `json:"driverId"`
}

// IsClaimed reports whether the driver is currently bound to a load.
func (d *DriverProfile) IsClaimed() bool {
	return d.ActiveLoadID != nil && *d.ActiveLoadID != ""
}

// CanCarry reports whether the vehicle can carry weight. A vehicle without a
// recorded capacity does not constrain assignment.
func (v *Vehicle) CanCarry(weight float64) bool {
	return v.Capacity <= 0 || v.Capacity >= weight
}

func (d *DriverProfile) clone() *DriverProfile {
	c := *d
	if d.ActiveLoadID != nil {
		id := *d.ActiveLoadID
		c.ActiveLoadID = &id
	}
	return &c
}

func (v *Vehicle) clone() *Vehicle {
	c := *v
	if v.DriverID != nil {
		id := *v.DriverID
		c.DriverID = &id
	}
	return &c
}
