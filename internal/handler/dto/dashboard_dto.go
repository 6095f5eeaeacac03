package dto

type DashboardSummaryResponse struct {
	TotalLicenses     int64 `json:"total_licenses"`
	RevokedLicenses   int64 `json:"revoked_licenses"`
	TotalActivations  int64 `json:"total_activations"`
	ActiveActivations int64 `json:"active_activations"`
}
