package options

import (
	"fmt"
	"strings"
)

func Validate(o *Options) []error {
	var errs []error
	if err := o.BaseOptions.ValidateAndApply(); err != nil {
		errs = append(errs, err)
	}
	if len(o.Broker) > 0 && !strings.Contains(o.Broker, "://") {
		errs = append(errs, fmt.Errorf("broker %q must be a url like tcp://host:1883", o.Broker))
	}

	return errs
}
