// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "regexp"

var tokenRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// IsSafeToken returns true if the token is safe to embed in URLs and log keys.
func IsSafeToken(token string) bool {
	return tokenRe.MatchString(token)
}
