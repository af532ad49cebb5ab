// Package catalog содержит статический справочник тарифов: соответствие
// тарифа цене и идентификатору цены платёжного шлюза. Справочник
// неизменяем и загружается один раз при старте процесса.
package catalog

import "errors"

// Имена тарифов.
const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// Числовые идентификаторы пакетов, закреплённые протоколом бэкенда.
// Пакет 1 — бесплатный тариф, записи в справочнике не имеет.
const (
	PackageFree       = 1
	PackagePro        = 2
	PackageEnterprise = 3
)

// ErrNoProduct для пакета нет платного продукта. Для свободного тарифа
// это норма, для прочих значений — ошибка конфигурации.
var ErrNoProduct = errors.New("no product for package id")

// Product платный продукт: отображаемое имя, цена за месяц,
// режим оплаты и идентификатор цены платёжного шлюза.
type Product struct {
	Tier         string
	DisplayName  string
	MonthlyPrice float64
	Currency     string
	Mode         string
	PriceID      string
}

var products = map[string]Product{
	TierPro: {
		Tier:         TierPro,
		DisplayName:  "Pro",
		MonthlyPrice: 19.0,
		Currency:     "EUR",
		Mode:         "subscription",
		PriceID:      "price_1PUnifiSignProMonthly",
	},
	TierEnterprise: {
		Tier:         TierEnterprise,
		DisplayName:  "Enterprise",
		MonthlyPrice: 49.0,
		Currency:     "EUR",
		Mode:         "subscription",
		PriceID:      "price_1PUnifiSignEnterpriseMo",
	},
}

// ByTier возвращает продукт по имени тарифа.
func ByTier(tier string) (Product, bool) {
	p, ok := products[tier]
	return p, ok
}

// ByPriceID возвращает продукт по идентификатору цены.
func ByPriceID(priceID string) (Product, bool) {
	for _, p := range products {
		if p.PriceID == priceID {
			return p, true
		}
	}
	return Product{}, false
}

// ByPackageID возвращает продукт по числовому идентификатору пакета.
// Для 1 (free), 0 и любых неизвестных значений возвращается ErrNoProduct:
// никакого тихого отката на другой тариф быть не должно.
func ByPackageID(packageID int) (Product, error) {
	switch packageID {
	case PackagePro:
		return products[TierPro], nil
	case PackageEnterprise:
		return products[TierEnterprise], nil
	default:
		return Product{}, ErrNoProduct
	}
}

// PackageID возвращает числовой идентификатор пакета для тарифа.
// Неизвестный тариф трактуется как бесплатный.
func PackageID(tier string) int {
	switch tier {
	case TierPro:
		return PackagePro
	case TierEnterprise:
		return PackageEnterprise
	default:
		return PackageFree
	}
}
