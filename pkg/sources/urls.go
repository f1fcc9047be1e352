package sources

// Relay paths. The relay attaches upstream credentials; these are resolved
// against the configured relay base URL.
const (
	RelayConfigPath = "/api/config"

	STIBVehiclePositionPath = "/api/vehicle-position"
	SNCBVehiclePositionPath = "/api/sncb/vehicle-position"
	BoltVehiclePositionPath = "/api/bolt/vehicle-position"
	DottVehiclePositionPath = "/api/dott/vehicle-position"

	TelraamPath       = "/api/traffic/telraam"
	TunnelTrafficPath = "/api/traffic/tunnels"
	TunnelDevicesPath = "/api/traffic/tunnel-devices"

	AirQualityPath = "/api/environment/air-quality"
)

const DefaultTileURL = "https://tile.basemaps.cartocdn.com/light_all/{z}/{x}/{y}.png"
