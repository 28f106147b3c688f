package product

import (
	"fmt"

	"github.com/shopspring/decimal"

	"consigna/internal/core/apperror"
)

const (
	maxBarcodeID     = 99999
	maxBarcodePrice  = 1_000_000
	maxGoldWeightG   = 10_000
	barcodeLength    = 13
	barcodeBaseDigit = 12
)

var (
	priceCeiling  = decimal.NewFromInt(maxBarcodePrice)
	weightCeiling = decimal.NewFromInt(maxGoldWeightG)
)

func materialPrefix(m Material) string {
	switch m {
	case MaterialGold:
		return "2"
	case MaterialSilver:
		return "1"
	default:
		return "0"
	}
}

// GenerateBarcode builds the internal EAN-13 code:
// prefix digit, 5-digit id, 6-digit payload, check digit.
// The payload is the whole-currency price for plated and silver items and
// the weight in centigrams for gold.
func GenerateBarcode(productID int64, material Material, salePrice, weightGrams decimal.Decimal) (string, error) {
	if productID <= 0 || productID > maxBarcodeID {
		return "", barcodeError(fmt.Sprintf("automatic barcode not supported for id %d (max %d)", productID, maxBarcodeID))
	}

	var payload int64
	if material == MaterialGold {
		if !weightGrams.IsPositive() || weightGrams.GreaterThanOrEqual(weightCeiling) {
			return "", barcodeError("gold weight must be greater than 0 and less than 10000g for automatic barcode")
		}
		payload = weightGrams.Mul(hundred).IntPart()
	} else {
		if salePrice.IsNegative() || salePrice.GreaterThanOrEqual(priceCeiling) {
			return "", barcodeError("automatic barcode not supported for prices of 1000000 or more")
		}
		payload = salePrice.IntPart()
	}

	base := fmt.Sprintf("%s%05d%06d", materialPrefix(material), productID, payload)
	return fmt.Sprintf("%s%d", base, CheckDigit(base)), nil
}

// CheckDigit computes the EAN-13 check digit for a 12-digit base:
// digits at even positions weigh 1, odd positions weigh 3.
func CheckDigit(base string) int {
	sum := 0
	for i, r := range base {
		d := int(r - '0')
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	return (10 - sum%10) % 10
}

// ValidCheckDigit reports whether a 13-digit code carries a correct check digit.
func ValidCheckDigit(code string) bool {
	if len(code) != barcodeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return CheckDigit(code[:barcodeBaseDigit]) == int(code[barcodeBaseDigit]-'0')
}

func barcodeError(msg string) *apperror.AppError {
	return apperror.NewValidation(msg).
		WithDetail(apperror.DetailField, "barcode").
		WithDetail(apperror.DetailReason, apperror.ReasonBarcodeFailed)
}
