package clinicAuth

// Destination is the area of the application a session lands in.
type Destination string

const (
	// DestinationNone means nobody is logged in or the role is unknown.
	DestinationNone Destination = ""
	// DestinationPatientHome is the patient area.
	DestinationPatientHome Destination = "patient_home"
	// DestinationProviderDashboard is the provider area.
	DestinationProviderDashboard Destination = "provider_dashboard"
	// DestinationAdminDashboard is the clinic admin area.
	DestinationAdminDashboard Destination = "admin_dashboard"
)

// Route maps a session role to its destination. A provider acting as a
// patient is routed to the patient area; actingAs is ignored for every other
// role.
func Route(role Role, actingAs Role) Destination {
	switch role {
	case RolePatient:
		return DestinationPatientHome
	case RoleAdmin:
		return DestinationAdminDashboard
	case RoleProvider:
		if actingAs == RolePatient {
			return DestinationPatientHome
		}
		return DestinationProviderDashboard
	default:
		return DestinationNone
	}
}
