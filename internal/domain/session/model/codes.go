// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "strconv"

// ResultCode accompanies a SessionResult. Zero is success, small negative values
// are transport/protocol failures and values in 100..599 are raw HTTP statuses.
type ResultCode int

const (
	CodeSuccess           ResultCode = 0
	CodeConnectionError   ResultCode = -1
	CodeConnectionTimeout ResultCode = -2
	CodeMalformedURL      ResultCode = -3
	CodeNonSDKURL         ResultCode = -4
	CodeNoDVRLive         ResultCode = -11
	CodeProxyError        ResultCode = -12
	CodeUnknownFormat     ResultCode = -20
	CodeFallbackURL       ResultCode = -21
)

var codeNames = map[ResultCode]string{
	CodeSuccess:           "SUCCESS",
	CodeConnectionError:   "CONNECTION_ERROR",
	CodeConnectionTimeout: "CONNECTION_TIMEOUT",
	CodeMalformedURL:      "MALFORMED_URL",
	CodeNonSDKURL:         "NON_SDK_URL",
	CodeNoDVRLive:         "NO_DVRLIVE",
	CodeProxyError:        "PROXY_ERROR",
	CodeUnknownFormat:     "UNKNOWN_FORMAT",
	CodeFallbackURL:       "FALLBACK_URL",
}

// IsHTTPStatus reports whether the code is a raw HTTP status surfaced from the CSM.
func (c ResultCode) IsHTTPStatus() bool {
	return c >= 100 && c <= 599
}

func (c ResultCode) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	if c.IsHTTPStatus() {
		return "HTTP_" + strconv.Itoa(int(c))
	}
	return "CODE_" + strconv.Itoa(int(c))
}

// IntegrationCode classifies problems surfaced to the host as warnings or
// errors when a session degrades.
type IntegrationCode int

const (
	IntegrationUnknownError   IntegrationCode = 1000
	IntegrationInvalidSource  IntegrationCode = 1001
	IntegrationNoAnalytics    IntegrationCode = 1002
	IntegrationNotInitialised IntegrationCode = 1003
	IntegrationInvalidPlayer  IntegrationCode = 1004
)

// Legacy numeric error codes kept for hosts migrating from the older session API.
const (
	LegacyErrorBase       = 7000
	LegacyDownloadFailed  = 7002
	LegacyHTTPHeaders     = 7004
	LegacyInvalidEncoding = 7005
	LegacySetSamePlayer   = 7009
	LegacyConnectionInit  = 7012
)
