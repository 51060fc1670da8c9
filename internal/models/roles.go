// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package models

// Role constants define the standard roles on the platform. Identity and role
// arrive from the external auth service; the core only consumes them.
const (
	// RoleAdmin has full access including admin-only rooms.
	RoleAdmin = "admin"

	// RoleManager runs day-to-day pharmacy operations.
	RoleManager = "manager"

	// RolePharmacist reviews and dispenses prescriptions.
	RolePharmacist = "pharmacist"

	// RoleTechnician assists with inventory and order handling.
	RoleTechnician = "technician"

	// RoleCustomer is the default role for patients/customers.
	RoleCustomer = "customer"
)

// ValidRoles contains all valid role names for validation.
var ValidRoles = []string{RoleAdmin, RoleManager, RolePharmacist, RoleTechnician, RoleCustomer}

// IsValidRole checks if a role name is valid.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// administrativeRoles receive mandatory system alerts regardless of their
// stored preferences (the role-override evaluation path).
var administrativeRoles = map[string]bool{
	RoleAdmin:   true,
	RoleManager: true,
}

// IsAdministrativeRole reports whether role is subject to mandatory
// operational alerts.
func IsAdministrativeRole(role string) bool {
	return administrativeRoles[role]
}

// pharmacyRoles may join pharmacy and prescription-review rooms.
var pharmacyRoles = map[string]bool{
	RoleAdmin:      true,
	RoleManager:    true,
	RolePharmacist: true,
}

// IsPharmacyRole reports whether role is on the pharmacy room allow-list.
func IsPharmacyRole(role string) bool {
	return pharmacyRoles[role]
}

// Identity is an already-authenticated principal handed to the core by the
// auth collaborator.
type Identity struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}
