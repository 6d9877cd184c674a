// Package validation checks flat string maps against Laravel-style rule
// strings. The container tooling uses it for configuration values and
// manifest names.
//
//	v := validation.Make(map[string]string{
//	    "app.port":  "8000",
//	    "log.level": "debug",
//	}, validation.Rules{
//	    "app.port":  "required|integer|gte:1|lte:65535",
//	    "log.level": "required|in:debug,info,warn,error",
//	})
//
//	if err := v.Validate(); err != nil {
//	    // err is *validation.Errors
//	}
//
// # Rules
//
//   - required           field must be present and non-empty
//   - nullable           empty values skip the remaining rules
//   - min:n / max:n      length bounds in UTF-8 characters
//   - between:a,b        length between a and b, inclusive
//   - integer / numeric  parseable as int / float64
//   - gte:n / lte:n      numeric bounds
//   - boolean            true/false/1/0/yes/no, case-insensitive
//   - in:a,b,c           value must be one of the list
//   - alpha_dash         letters, digits, dashes and underscores
//   - slug               alpha_dash plus dots, starting with a letter or digit
//   - regex:pattern      must match the pattern; the pattern cannot contain '|'
//
// Rules for one field stop at the first failure.
package validation
