package appif

// AppPermissions gates what an application connection may do, per
// spec.md §9's resolved Open Question: the buyer/seller split
// (`{routes,buyer,seller,config}`), not the older `{reports,routes,
// send_funds,config}` shape some revisions of the original used.
type AppPermissions struct {
	// Routes grants RequestRoutes and route-cache-staleness queries
	// (out of scope beyond the AppRequest enum itself -- see spec.md's
	// Non-goal on index-routing implementations).
	Routes bool

	// Buyer grants CreatePayment/CreateTransaction/RequestClosePayment/
	// AckClosePayment: originating payments.
	Buyer bool

	// Seller grants AddInvoice/CancelInvoice/CommitInvoice: receiving
	// payments.
	Seller bool

	// Config grants every friend/relay/index-server administrative
	// request (AddFriend, SetFriendRate, OpenFriend, ...).
	Config bool
}

// FullPermissions grants everything, the shape a local trusted CLI
// connection (meshctl over a loopback-only control socket) uses.
func FullPermissions() AppPermissions {
	return AppPermissions{Routes: true, Buyer: true, Seller: true, Config: true}
}

func configGate(p AppPermissions) bool { return p.Config }
func buyerGate(p AppPermissions) bool  { return p.Buyer }
func sellerGate(p AppPermissions) bool { return p.Seller }

// Allowed reports whether perms grants req's required permission.
func Allowed(req AppRequest, perms AppPermissions) bool {
	return req.requiredPermission()(perms)
}
