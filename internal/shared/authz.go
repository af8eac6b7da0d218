package shared

// Core marketplace permissions. Identifiers follow the catalog naming
// pattern: a "perm_" prefix plus lowercase alphanumerics/underscores.
const (
	PermAdminAccess = "perm_admin_access"

	PermManageRBAC  = "perm_manage_rbac"
	PermManageUsers = "perm_manage_users"

	PermViewSellers   = "perm_view_sellers"
	PermManageSellers = "perm_manage_sellers"

	PermViewListings    = "perm_view_listings"
	PermCreateListings  = "perm_create_listings"
	PermPublishListings = "perm_publish_listings"

	PermViewBilling   = "perm_view_billing"
	PermManageBilling = "perm_manage_billing"

	PermManagePlans = "perm_manage_plans"

	PermSendNotifications = "perm_send_notifications"
)

// CoreScopes lists permissions seeded for the core platform.
func CoreScopes() []string {
	return []string{
		PermAdminAccess,
		PermManageRBAC,
		PermManageUsers,
		PermViewSellers,
		PermManageSellers,
		PermViewListings,
		PermCreateListings,
		PermPublishListings,
		PermViewBilling,
		PermManageBilling,
		PermManagePlans,
		PermSendNotifications,
	}
}
