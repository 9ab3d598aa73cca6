// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package env contains definitions for the environments a build can target.
package env

import (
	"errors"
	"fmt"
)

// Env is the environment a build targets. It selects the variables overlay
// file (variables.<env>.toml) and implements [flag.Value].
type Env string

// Available environments.
const (
	Dev     = Env("dev")
	Staging = Env("staging")
	Prod    = Env("prod")
)

var errUnknown = errors.New("unknown environment")

// Parse returns the environment named by s. An empty string means [Dev].
func Parse(s string) (Env, error) {
	switch e := Env(s); e {
	case "":
		return Dev, nil
	case Dev, Staging, Prod:
		return e, nil
	}
	return "", fmt.Errorf("%w %q (want dev, staging or prod)", errUnknown, s)
}

func (e Env) String() string {
	if e == "" {
		return string(Dev)
	}
	return string(e)
}

// Set implements [flag.Value].
func (e *Env) Set(s string) error {
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*e = v
	return nil
}
