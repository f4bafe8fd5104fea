package checkout

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/giftset-storefront/internal/common"
	"github.com/noah-isme/giftset-storefront/internal/order"
)

// DefaultCountry is used when an address omits its country.
const DefaultCountry = "PK"

// Address is the shopper-supplied billing or shipping address.
type Address struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Address1  string `json:"address1" validate:"required"`
	Address2  string `json:"address2"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state"`
	Postcode  string `json:"postcode" validate:"omitempty,alphanum,max=10"`
	Country   string `json:"country" validate:"required,len=2,alpha"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty,phone"`
}

func (a Address) normalised() Address {
	a.FirstName = strings.TrimSpace(a.FirstName)
	a.LastName = strings.TrimSpace(a.LastName)
	a.Address1 = strings.TrimSpace(a.Address1)
	a.Address2 = strings.TrimSpace(a.Address2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.Postcode = strings.TrimSpace(a.Postcode)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	if a.Country == "" {
		a.Country = DefaultCountry
	}
	a.Email = strings.TrimSpace(a.Email)
	a.Phone = strings.TrimSpace(a.Phone)
	return a
}

func (a Address) toOrder() order.Address {
	return order.Address{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Address1:  a.Address1,
		Address2:  a.Address2,
		City:      a.City,
		State:     a.State,
		Postcode:  a.Postcode,
		Country:   a.Country,
		Email:     a.Email,
		Phone:     a.Phone,
	}
}

// Input is the checkout form.
type Input struct {
	Billing                Address  `json:"billing"`
	Shipping               *Address `json:"shipping"`
	ShipToDifferentAddress bool     `json:"shipToDifferentAddress"`
	PaymentMethod          string   `json:"paymentMethod"`
	Note                   string   `json:"note" validate:"max=1000"`
}

// minPhoneDigits is the shortest accepted phone number after stripping separators.
const minPhoneDigits = 10

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return validPhone(fl.Field().String())
	})
	return v
}

func validPhone(raw string) bool {
	digits := 0
	for i, r := range raw {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return false
		}
	}
	return digits >= minPhoneDigits
}

// validate normalises in and checks it, returning the first failing field.
// Shipping falls back to the billing address unless the shopper asked to
// ship elsewhere.
func validate(v *validator.Validate, in Input) (Input, error) {
	in.Billing = in.Billing.normalised()
	switch {
	case !in.ShipToDifferentAddress:
		in.Shipping = nil
	case in.Shipping == nil:
		return in, common.NewValidationError("shipping", common.ErrInvalidField)
	default:
		shipping := in.Shipping.normalised()
		in.Shipping = &shipping
	}
	if err := v.Struct(in); err != nil {
		return in, fieldError(err)
	}
	if err := v.Var(in.Billing.Email, "required,email"); err != nil {
		return in, common.NewValidationError("billing.email", common.ErrInvalidField)
	}
	if err := v.Var(in.Billing.Phone, "required,phone"); err != nil {
		return in, common.NewValidationError("billing.phone", common.ErrInvalidField)
	}
	if in.Shipping == nil {
		shipping := in.Billing
		shipping.Email = ""
		shipping.Phone = ""
		in.Shipping = &shipping
	}
	return in, nil
}

func fieldError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		ns := verrs[0].Namespace()
		if idx := strings.Index(ns, "."); idx >= 0 {
			ns = ns[idx+1:]
		}
		return common.NewValidationError(ns, common.ErrInvalidField)
	}
	return common.NewValidationError("", common.ErrInvalidField)
}
