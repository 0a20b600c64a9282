package relay

import "net/http"

// Proxy отдаёт ответ шлюза клиенту как есть: статус, Content-Type, тело.
func (r *RawResult) Proxy(w http.ResponseWriter) {
	w.Header().Set("Content-Type", r.ContentType)
	w.WriteHeader(r.Status)
	_, _ = w.Write(r.Body)
}
