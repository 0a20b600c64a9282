package labanalyzer

import (
	"context"

	"teleicu/internal/models"
)

type fakeDevices struct {
	byUUID map[string]*models.Device
}

func (f *fakeDevices) ByUUID(_ context.Context, uuid, careType string) (*models.Device, error) {
	d := f.byUUID[uuid]
	if d == nil || d.CareType != careType {
		return nil, nil
	}
	return d, nil
}

func (f *fakeDevices) SaveMetadata(context.Context, *models.Device) error { return nil }

type fakeReports struct {
	byUUID map[string]*models.DiagnosticReport
}

func (f *fakeReports) DiagnosticReportByUUID(_ context.Context, uuid string) (*models.DiagnosticReport, error) {
	return f.byUUID[uuid], nil
}

type staticTokens struct{}

func (staticTokens) Generate() (string, error) { return "tok", nil }
