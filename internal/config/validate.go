// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance; validators are safe for
// concurrent use and cache struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs the tag-based validation over the whole config tree and
// rewrites the first failure into an operator-readable message.
func validateStruct(c *Config) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid config field %s: failed %q constraint (value %v)",
			fe.Namespace(), fe.Tag(), fe.Value())
	}
	return err
}
