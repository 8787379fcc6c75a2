package routes

import (
	"fmt"
	"net/http"
)

// PrivacyPolicyHandler serves the privacy policy linked from the app stores
func PrivacyPolicyHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Privacy Policy</title>
</head>
<body>
	<h1>Privacy Policy</h1>
	<p>We store your name, email, optional phone number and birthday, your avatar, the messages and files you send, and call history of your conversations.</p>
	<p>Your online status is visible to other users while the app is open.</p>
	<p>Deleting a conversation removes its messages and call history for every member.</p>
</body>
</html>
`)
}
