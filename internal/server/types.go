package server

// DisplayResponse is the payload TRMNL devices expect from /api/display.
type DisplayResponse struct {
	Status          int    `json:"status"`
	ImageURL        string `json:"image_url"`
	Filename        string `json:"filename"`
	RefreshRate     int    `json:"refresh_rate"`
	UpdateFirmware  bool   `json:"update_firmware"`
	FirmwareURL     string `json:"firmware_url,omitempty"`
	ResetFirmware   bool   `json:"reset_firmware"`
	SpecialFunction string `json:"special_function"`
	ImageURLTimeout int    `json:"image_url_timeout"`
}

// SetupResponse is the payload returned during device provisioning.
type SetupResponse struct {
	Status     int    `json:"status"`
	APIKey     string `json:"api_key"`
	FriendlyID string `json:"friendly_id"`
	ImageURL   string `json:"image_url"`
	Message    string `json:"message"`
}

// DeviceLog is the telemetry body devices post to /api/log.
type DeviceLog struct {
	BatteryVoltage    float64 `json:"battery_voltage"`
	HeapFree          int     `json:"heap_free"`
	RSSI              int     `json:"rssi"`
	WakeReason        string  `json:"wake_reason"`
	SleepDuration     int     `json:"sleep_duration"`
	FirmwareVersion   string  `json:"firmware_version"`
	Uptime            int     `json:"uptime"`
	WifiConnectTime   int     `json:"wifi_connect_time"`
	ImageDownloadTime int     `json:"image_download_time"`
	DisplayRenderTime int     `json:"display_render_time"`
}
