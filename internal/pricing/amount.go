package pricing

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// Amount is a currency value. It serializes as a JSON number or string and
// is stored in DynamoDB as a number with two decimal places.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount { return Amount{Decimal: d} }

// AmountFromFloat converts a client or catalog float into an Amount rounded to paise.
func AmountFromFloat(f float64) Amount {
	return Amount{Decimal: decimal.NewFromFloat(f).Round(2)}
}

func MustAmount(s string) Amount { return Amount{Decimal: decimal.RequireFromString(s)} }

func (a Amount) Add(b Amount) Amount { return Amount{Decimal: a.Decimal.Add(b.Decimal)} }

func (a Amount) Mul(qty int) Amount {
	return Amount{Decimal: a.Decimal.Mul(decimal.NewFromInt(int64(qty)))}
}

// Equal compares at paise precision.
func (a Amount) Equal(b Amount) bool {
	return a.Decimal.Round(2).Equal(b.Decimal.Round(2))
}

// MinorUnits returns the amount in the smallest currency unit (paise).
func (a Amount) MinorUnits() int64 {
	return a.Decimal.Shift(2).Round(0).IntPart()
}

func (a Amount) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: a.Decimal.StringFixed(2)}, nil
}

func (a *Amount) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	var raw string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = v.Value
	case *types.AttributeValueMemberNULL:
		a.Decimal = decimal.Zero
		return nil
	default:
		return fmt.Errorf("amount: unsupported attribute type %T", av)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	a.Decimal = d
	return nil
}
