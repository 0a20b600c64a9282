// Package endpoint валидирует адреса, по которым платформа ходит к шлюзам
// и устройствам. Чисто синтаксическая проверка — DNS не трогаем.
package endpoint

import (
	"errors"
	"net/netip"
	"strings"
)

var (
	ErrSchemeNotAllowed = errors.New("URL schemes not allowed in hostname")
	ErrBadHostname      = errors.New("hostname parts can only contain alphanumeric characters, hyphens and underscores")
)

// ValidateAddress нормализует IPv4/IPv6-литерал или проверяет hostname.
// Возвращает каноническую форму адреса.
func ValidateAddress(value string) (string, error) {
	// Зонные литералы (fe80::1%eth0) адресами не считаем: зона не
	// маршрутизируется извне, а "%" ловится проверкой hostname ниже.
	if addr, err := netip.ParseAddr(value); err == nil && addr.Zone() == "" {
		return addr.String(), nil
	}

	if strings.Contains(value, "://") {
		return "", ErrSchemeNotAllowed
	}
	for _, c := range value {
		if isAlnum(c) || strings.ContainsRune("-_.:", c) {
			continue
		}
		return "", ErrBadHostname
	}
	return value, nil
}

func isAlnum(c rune) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
