/*
Package authsdk is a small Go client for the authgate service.

# Mechanisms

The service accepts three interchangeable credentials and the client has a
method family for each:

	client := authsdk.NewSDKClient("http://localhost:8080")

	// Basic: credentials on every request.
	msg, err := client.ProtectedRoute(ctx, "admin", "secret-password")

	// Bearer: exchange a password for a short-lived token.
	session, err := client.AuthenticateWithPassword(ctx, "alice", "wonderland")
	profile, err := session.Profile(ctx)

	// Cookie session: the jar keeps the signed session cookie.
	err = client.Login(ctx, "carol", "")
	profile, err = client.Profile(ctx)
	err = client.Logout(ctx)

# Errors

Non-2xx responses are returned as *APIError carrying the status code, the
"detail" message and any WWW-Authenticate challenge:

	if authsdk.IsStatus(err, http.StatusUnauthorized) {
		// prompt for credentials again
	}
*/
package authsdk
