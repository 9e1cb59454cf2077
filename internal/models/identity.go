package models

// PortalIdentity описывает устройство, пришедшее на портал через редирект хотспота.
// MAC и IP могут отсутствовать, остальные поля копируются из параметров редиректа как есть.
type PortalIdentity struct {
	MAC           *string `json:"mac"`
	IP            *string `json:"ip"`
	ChapID        string  `json:"chapId,omitempty"`
	ChapChallenge string  `json:"chapChallenge,omitempty"`
	LinkLogin     string  `json:"linkLogin,omitempty"`
	LinkOrig      string  `json:"linkOrig,omitempty"`
	Username      string  `json:"username,omitempty"`
	Password      string  `json:"password,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// MACValue возвращает MAC устройства или пустую строку.
func (p *PortalIdentity) MACValue() string {
	if p == nil || p.MAC == nil {
		return ""
	}
	return *p.MAC
}

// IPValue возвращает IP устройства или пустую строку.
func (p *PortalIdentity) IPValue() string {
	if p == nil || p.IP == nil {
		return ""
	}
	return *p.IP
}
