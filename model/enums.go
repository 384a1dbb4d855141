package model

// NodeType is the functional category of a network node.
type NodeType string

const (
	NodeCombat         NodeType = "combat"          // front-line position generating demand
	NodeMedicalRole1   NodeType = "medical_role1"   // forward first-aid facility
	NodeMedicalRole2   NodeType = "medical_role2"   // surgical-capable facility
	NodeRepairWorkshop NodeType = "repair_workshop" // vehicle repair workshop
	NodeAmmoPoint      NodeType = "ammo_point"      // ammunition supply point
	NodeFuelPoint      NodeType = "fuel_point"      // fuel distribution point
	NodeExchangePoint  NodeType = "exchange_point"  // generic transfer/handover location
	NodeHQ             NodeType = "hq"              // headquarters/command node
	NodeForwardArming  NodeType = "forward_arming"  // forward arming and refuelling point
)

func (t NodeType) Valid() bool {
	switch t {
	case NodeCombat, NodeMedicalRole1, NodeMedicalRole2, NodeRepairWorkshop,
		NodeAmmoPoint, NodeFuelPoint, NodeExchangePoint, NodeHQ, NodeForwardArming:
		return true
	}
	return false
}

// VehicleClass is a weight/size classification affecting route access and
// recovery requirements.
type VehicleClass string

const (
	ClassLight  VehicleClass = "light"
	ClassMedium VehicleClass = "medium"
	ClassHeavy  VehicleClass = "heavy"
)

// Ordinal maps classes onto a comparable scale: light < medium < heavy.
// Unknown classes compare as light.
func (c VehicleClass) Ordinal() int {
	switch c {
	case ClassMedium:
		return 1
	case ClassHeavy:
		return 2
	default:
		return 0
	}
}

func (c VehicleClass) Valid() bool {
	switch c {
	case ClassLight, ClassMedium, ClassHeavy:
		return true
	}
	return false
}

// VehicleRole determines a vehicle's behaviour in the simulation.
type VehicleRole string

const (
	RoleAmbulance        VehicleRole = "ambulance"
	RoleRecovery         VehicleRole = "recovery"
	RoleAmmoLogistics    VehicleRole = "ammo_logistics"
	RoleFuelLogistics    VehicleRole = "fuel_logistics"
	RoleGeneralLogistics VehicleRole = "general_logistics"
)

func (r VehicleRole) Valid() bool {
	switch r {
	case RoleAmbulance, RoleRecovery, RoleAmmoLogistics, RoleFuelLogistics, RoleGeneralLogistics:
		return true
	}
	return false
}

// VehicleState is the operational state of a vehicle at a point in time.
type VehicleState string

const (
	StateIdle              VehicleState = "idle"
	StateTransitingUnladen VehicleState = "transiting_unladen"
	StateTransitingLaden   VehicleState = "transiting_laden"
	StateLoading           VehicleState = "loading"
	StateUnloading         VehicleState = "unloading"
	StateHookup            VehicleState = "hookup"
	StateUnderRepair       VehicleState = "under_repair"
	StateBrokenDown        VehicleState = "broken_down"
	StateCrewRest          VehicleState = "crew_rest"
	StateMaintenance       VehicleState = "maintenance"
)

// DemandType classifies demand events the simulation can generate.
type DemandType string

const (
	DemandCasualty         DemandType = "casualty"
	DemandAmmoRequest      DemandType = "ammo_request"
	DemandFuelRequest      DemandType = "fuel_request"
	DemandVehicleBreakdown DemandType = "vehicle_breakdown"
)

func (t DemandType) Valid() bool {
	switch t {
	case DemandCasualty, DemandAmmoRequest, DemandFuelRequest, DemandVehicleBreakdown:
		return true
	}
	return false
}

// DemandMode selects how demand is produced during a run.
type DemandMode string

const (
	DemandManual    DemandMode = "manual"     // explicit event list with exact times
	DemandRateBased DemandMode = "rate_based" // Poisson arrivals from configured rates
)

// Priority is a NATO-style urgency level. Lower value = more urgent.
type Priority int

const (
	PriorityUrgent      Priority = 1 // P1 - immediate, life-threatening
	PriorityPriority    Priority = 2 // P2 - surgery within 4 hours
	PriorityRoutine     Priority = 3 // P3 - can wait
	PriorityConvenience Priority = 4 // P4 - administrative move
)

func (p Priority) Valid() bool {
	return p >= PriorityUrgent && p <= PriorityConvenience
}
