package offline

import (
	"net/http"
)

const offlinePage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Offline - Palm Beach Pass</title>
<style>
body { font-family: system-ui, sans-serif; background: linear-gradient(135deg, #FFF3A0 0%, #FFFFFF 100%); min-height: 100vh; margin: 0; display: flex; flex-direction: column; align-items: center; justify-content: center; text-align: center; padding: 2rem; color: #2C2C2C; }
.icon { width: 120px; height: 120px; border-radius: 30px; background: linear-gradient(135deg, #FF6B35, #2E86AB); color: white; font-size: 4rem; display: flex; align-items: center; justify-content: center; margin-bottom: 2rem; }
h1 { color: #FF6B35; font-size: 2.5rem; }
p { color: #666666; max-width: 500px; line-height: 1.6; }
.retry { background: #FF6B35; color: white; border: none; padding: 1rem 2.5rem; border-radius: 50px; font-weight: 600; cursor: pointer; }
.links { margin-top: 3rem; padding: 2rem; background: white; border-radius: 20px; max-width: 400px; width: 100%; }
.links a { display: block; padding: 1rem; margin: 0.5rem 0; background: #FFF3A0; border-radius: 15px; color: #FF6B35; text-decoration: none; }
</style>
</head>
<body>
<div class="icon">🌴</div>
<h1>You're Offline</h1>
<p>Your digital passes and saved content are still available. The page reconnects when the network is back.</p>
<button class="retry" onclick="window.location.reload()">Try Again</button>
<div class="links">
<h3>Available Offline:</h3>
<a href="/">🏠 Home</a>
<a href="/customer-account.html">🎫 My Passes</a>
<a href="/checkout.html">🛒 Checkout</a>
</div>
<script>window.addEventListener('online', function () { window.location.reload(); });</script>
</body>
</html>
`

const offlineImage = `<svg width="200" height="200" viewBox="0 0 200 200" xmlns="http://www.w3.org/2000/svg">
<defs><linearGradient id="g" x1="0%" y1="0%" x2="100%" y2="100%"><stop offset="0%" stop-color="#FF6B35"/><stop offset="100%" stop-color="#2E86AB"/></linearGradient></defs>
<rect width="200" height="200" fill="#FFF3A0"/>
<circle cx="100" cy="100" r="60" fill="url(#g)" opacity="0.8"/>
<text x="100" y="110" text-anchor="middle" fill="white" font-size="60" font-family="system-ui">🌴</text>
<text x="100" y="150" text-anchor="middle" fill="#666" font-size="12" font-family="system-ui">Offline</text>
</svg>
`

// OfflinePage is the synthesized document served when navigation fails and no shell is cached.
func OfflinePage() *Response {
	return &Response{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:   []byte(offlinePage),
	}
}

// OfflineImage is the placeholder served for image requests while offline.
func OfflineImage() *Response {
	return &Response{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"image/svg+xml"}},
		Body:   []byte(offlineImage),
	}
}

// Unavailable is the generic offline response.
func Unavailable() *Response {
	return &Response{
		Status: http.StatusServiceUnavailable,
		Header: http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Body:   []byte("Offline"),
	}
}
