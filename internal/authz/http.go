package authz

import "net/http"

// UserHeader проставляется auth-прокси хост-платформы.
const UserHeader = "X-User-Id"

func UserFrom(r *http.Request) string {
	return r.Header.Get(UserHeader)
}
