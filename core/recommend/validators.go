package recommend

import (
	"github.com/go-playground/validator/v10"

	"github.com/heroesdelapatria/portal/core"
)

// Validate cleans and validates the request.
func (req *RecommendRequest) Validate(validate *validator.Validate) error {
	req.UserID = core.CleanString(req.UserID)
	req.Options.Algorithm = core.CleanString(req.Options.Algorithm, true /* lower */)
	req.Options.Category = core.CleanString(req.Options.Category, true /* lower */)
	return validate.Struct(req)
}

func (ni *NewInteraction) Validate(validate *validator.Validate) error {
	ni.UserID = core.CleanString(ni.UserID)
	ni.ItemID = core.CleanString(ni.ItemID)
	ni.Type = core.CleanString(ni.Type, true /* lower */)
	return validate.Struct(ni)
}

func (pu ProfileUpdate) Validate(validate *validator.Validate) error { return validate.Struct(pu) }
