package models

// PackageOffer тарифный пакет из каталога. Идентифицируется ключом Key,
// а не ID в базе: гостевой и авторизованный сценарии ссылаются на пакет до появления подписки.
type PackageOffer struct {
	Key             string `json:"key"`
	Name            string `json:"name"`
	PriceKES        int    `json:"priceKES"`
	DurationSeconds int64  `json:"durationSeconds"`
	SpeedKbps       int    `json:"speedKbps"`
	DevicesAllowed  int    `json:"devicesAllowed"`
	PointsRequired  int    `json:"pointsRequired"`
	PointsEarned    int    `json:"pointsEarned"`
}
