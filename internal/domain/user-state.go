package domain

// Conversation flow steps. The session store keys a UserState by telegram id;
// handlers advance Step as the user answers prompts.
const (
	StepNone = ""

	// Registration
	StepRegisterRole      = "register_role"
	StepRegisterFirstName = "register_first_name"
	StepRegisterLastName  = "register_last_name"
	StepRegisterPhone     = "register_phone"

	// Trip order flow
	StepTripFromRegion   = "trip_from_region"
	StepTripFromDistrict = "trip_from_district"
	StepTripPassengers   = "trip_passengers"
	StepTripToRegion     = "trip_to_region"
	StepTripToDistrict   = "trip_to_district"
	StepTripDate         = "trip_date"
	StepTripTime         = "trip_time"
	StepTripConfirm      = "trip_confirm"

	// Delivery order flow
	StepDeliveryFromRegion    = "delivery_from_region"
	StepDeliveryFromDistrict  = "delivery_from_district"
	StepDeliveryToRegion      = "delivery_to_region"
	StepDeliveryToDistrict    = "delivery_to_district"
	StepDeliveryPackageType   = "delivery_package_type"
	StepDeliveryPackageSize   = "delivery_package_size"
	StepDeliveryWeight        = "delivery_weight"
	StepDeliveryDescription   = "delivery_description"
	StepDeliveryReceiverName  = "delivery_receiver_name"
	StepDeliveryReceiverPhone = "delivery_receiver_phone"
	StepDeliveryConfirm       = "delivery_confirm"

	// Profile editing
	StepEditFirstName = "edit_first_name"
	StepEditLastName  = "edit_last_name"
	StepEditPhone     = "edit_phone"

	// Admin panel
	StepAdminRegionName       = "admin_region_name"
	StepAdminRegionRename     = "admin_region_rename"
	StepAdminDistrictName     = "admin_district_name"
	StepAdminDistrictRename   = "admin_district_rename"
	StepAdminConfirmDeletion  = "admin_confirm_deletion"
	StepAdminConfirmRegionAdd = "admin_confirm_region_add"
)

// UserState is the per-user conversation state persisted in the session
// store between updates.
type UserState struct {
	Step string `json:"step"`

	// Partially collected order attributes. Names are kept alongside ids
	// for the confirmation summary.
	Kind           string `json:"kind,omitempty"`
	FromRegionID   int64  `json:"from_region_id,omitempty"`
	FromDistrictID int64  `json:"from_district_id,omitempty"`
	ToRegionID     int64  `json:"to_region_id,omitempty"`
	ToDistrictID   int64  `json:"to_district_id,omitempty"`
	FromRegion     string `json:"from_region,omitempty"`
	FromDistrict   string `json:"from_district,omitempty"`
	ToRegion       string `json:"to_region,omitempty"`
	ToDistrict     string `json:"to_district,omitempty"`
	Passengers   int    `json:"passengers,omitempty"`
	Date         string `json:"date,omitempty"`
	Time         string `json:"time,omitempty"`

	PackageType        string  `json:"package_type,omitempty"`
	PackageSize        string  `json:"package_size,omitempty"`
	PackageWeight      float64 `json:"package_weight,omitempty"`
	PackageDescription string  `json:"package_description,omitempty"`
	ReceiverName       string  `json:"receiver_name,omitempty"`
	ReceiverPhone      string  `json:"receiver_phone,omitempty"`

	// Registration scratch
	Role      string `json:"role,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`

	// History pagination
	HistoryPage int `json:"history_page,omitempty"`

	// Admin panel scratch
	AdminRegionID   int64 `json:"admin_region_id,omitempty"`
	AdminDistrictID int64 `json:"admin_district_id,omitempty"`
}
