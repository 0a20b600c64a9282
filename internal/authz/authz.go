// Package authz — тонкая прослойка к хостовому движку прав.
// Сам движок — внешний чёрный ящик; здесь только контракт проверки и
// правило «OR двух областей» для устройств.
package authz

import (
	"context"

	"teleicu/internal/models"
)

type Capability string

const (
	CanViewCameraStream Capability = "can_view_camera_stream"
	CanControlCameraPTZ Capability = "can_control_camera_ptz"
)

// Checker — проверка (capability, user, организационная область).
type Checker interface {
	Check(ctx context.Context, cap Capability, user, orgScope string) bool
}

// AllowedOnDevice: право даётся либо через организацию учреждения
// устройства, либо через организацию его текущей локации.
func AllowedOnDevice(ctx context.Context, ch Checker, cap Capability, user string, dev *models.Device, loc *models.FacilityLocation) bool {
	if ch.Check(ctx, cap, user, dev.FacilityOrg) {
		return true
	}
	if loc != nil && ch.Check(ctx, cap, user, loc.FacilityOrg) {
		return true
	}
	return false
}

// AllowAll — дефолт для standalone-запуска без хостового движка.
type AllowAll struct{}

func (AllowAll) Check(context.Context, Capability, string, string) bool { return true }

// DenyAll — для тестов отказов.
type DenyAll struct{}

func (DenyAll) Check(context.Context, Capability, string, string) bool { return false }
