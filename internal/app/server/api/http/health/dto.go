package health

type Input struct{}

type Output struct {
	Body Response
}

// Response состояние сервиса синхронизации
type Response struct {
	Status     string `json:"status" example:"OK" enum:"OK"`
	Storage    string `json:"storage" example:"postgres" doc:"Драйвер хранилища, ответивший на ping"`
	Version    string `json:"version" example:"1.0.0"`
	ServerTime string `json:"server_time" example:"2024-01-01T10:00:00.000Z"`
}
