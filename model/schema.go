package model

// Schema returns a structural description of the scenario document: the
// top-level keys, their field types, and the constraints validation
// enforces. It is intentionally hand-maintained rather than generated by
// reflection so constraint text stays readable.
func Schema() map[string]any {
	return map[string]any{
		"title":   "logistics scenario",
		"version": "1.0.0",
		"required": []string{
			"name", "nodes", "edges", "vehicle_types", "vehicles", "demand",
		},
		"properties": map[string]any{
			"name":        "string, non-empty",
			"description": "string, optional",
			"version":     "string, optional",
			"nodes": map[string]any{
				"id":          "string, unique, non-empty",
				"name":        "string, non-empty",
				"type":        enumValues(allNodeTypes()),
				"coordinates": "object {x: number, y: number}",
				"capacity": "object, optional integer limits: treatment_slots, repair_bays, " +
					"storage_ammo, storage_fuel, holding_casualties, parking_vehicles, loading_bays",
				"properties": "object, type-specific: treatment_time_mins, repair_time_{light,medium,heavy}_mins, " +
					"initial_ammo_stock, initial_fuel_stock, resupply_interval_hours, resupply_quantity",
			},
			"edges": map[string]any{
				"from":        "string, existing node id",
				"to":          "string, existing node id, != from",
				"distance_km": "number > 0",
				"properties": map[string]any{
					"terrain_factor":    "number in (0, 3.0], default 1.0",
					"max_vehicle_class": enumValues([]string{string(ClassLight), string(ClassMedium), string(ClassHeavy)}),
					"is_operational":    "bool, default true",
					"route_name":        "string, optional",
				},
			},
			"vehicle_types": map[string]any{
				"id":                       "string, unique, non-empty",
				"role":                     enumValues(allRoles()),
				"vehicle_class":            enumValues([]string{string(ClassLight), string(ClassMedium), string(ClassHeavy)}),
				"speed":                    "object {unladen_kmh, laden_kmh}, 0 < laden <= unladen <= 150",
				"service_times":            "object {load_time_mins, unload_time_mins, hookup_time_mins?}",
				"casualty_capacity":        "int >= 1, required for ambulance",
				"ammo_capacity_units":      "int >= 1, required for ammo_logistics",
				"fuel_capacity_litres":     "number >= 1, required for fuel_logistics",
				"tow_capacity_class":       "class, required for recovery (with hookup_time_mins)",
				"mtbf_hours":               "number > 0, optional; enables breakdowns/maintenance",
				"crew_size":                "int in [1, 10], default 2",
				"max_continuous_ops_hours": "number in (0, 24], default 12",
			},
			"vehicles": map[string]any{
				"id":                    "string, unique, non-empty",
				"type_id":               "string, existing vehicle type id",
				"callsign":              "string, optional",
				"start_location":        "string, existing node id",
				"initial_state":         "string, default idle",
				"initial_load_fraction": "number in [0, 1], default 0",
			},
			"demand": map[string]any{
				"mode": enumValues([]string{string(DemandManual), string(DemandRateBased)}),
				"manual_events": "list of {time_mins >= 0, type, location, quantity >= 1, " +
					"priority in [1,4], properties?}; required when mode=manual",
				"rate_based": "list of {type, location, rate_per_hour > 0, priority_weights summing to 1±0.01, " +
					"active_from_mins, active_until_mins?, min_quantity, max_quantity}; required when mode=rate_based",
			},
			"config": map[string]any{
				"duration_hours":             "number in (0, 168], default 8",
				"random_seed":                "int, default 0",
				"time_step_mins":             "number in (0, 60], default 1",
				"enable_crew_fatigue":        "bool, default false",
				"enable_vehicle_maintenance": "bool, default false",
				"enable_breakdowns":          "bool, default false",
				"max_events":                 "int >= 0, default 1000000",
			},
		},
	}
}

func enumValues(vals []string) map[string]any {
	return map[string]any{"enum": vals}
}

func allNodeTypes() []string {
	return []string{
		string(NodeCombat), string(NodeMedicalRole1), string(NodeMedicalRole2),
		string(NodeRepairWorkshop), string(NodeAmmoPoint), string(NodeFuelPoint),
		string(NodeExchangePoint), string(NodeHQ), string(NodeForwardArming),
	}
}

func allRoles() []string {
	return []string{
		string(RoleAmbulance), string(RoleRecovery), string(RoleAmmoLogistics),
		string(RoleFuelLogistics), string(RoleGeneralLogistics),
	}
}
