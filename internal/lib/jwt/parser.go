// Package jwt проверяет токены пользователей, выданные сервисом аккаунтов шлюза.
//
// Портал и шлюз разделяют HS256-секрет; портал токены только проверяет.
package jwt

// Parser проверяет JWT токены секретным ключом шлюза.
type Parser struct {
	secretKey string
}

// NewParser создаёт Parser на основе секретного ключа.
func NewParser(secretKey string) *Parser {
	return &Parser{secretKey: secretKey}
}
