// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"assetmanager/internal/valuation"
)

// Channel names are lower snake case, e.g. "temperature" or "soil_quality".
var channelNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// Handles are caller-chosen asset slugs.
var handleRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn adds the custom validations to v.
func RegisterOn(v *validator.Validate) {
	_ = v.RegisterValidation("channel_name", validateChannelName)
	_ = v.RegisterValidation("impact_rule", validateImpactRule)
	_ = v.RegisterValidation("asset_handle", validateAssetHandle)
}

func validateChannelName(fl validator.FieldLevel) bool {
	return channelNameRegex.MatchString(fl.Field().String())
}

// An empty rule selects the default linear adjustment.
func validateImpactRule(fl validator.FieldLevel) bool {
	return valuation.IsKnownRule(fl.Field().String())
}

func validateAssetHandle(fl validator.FieldLevel) bool {
	return handleRegex.MatchString(fl.Field().String())
}
