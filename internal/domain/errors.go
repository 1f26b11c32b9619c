package domain

import "errors"

var (
	// ErrNoCredentials is returned when the credential store holds no API keys.
	ErrNoCredentials = errors.New("no api credentials available")

	// ErrCredentialsExhausted is returned once every loaded API key has been used up.
	ErrCredentialsExhausted = errors.New("all api credentials exhausted")

	// ErrQuotaExceeded is returned by the video API client when a key is over its daily quota.
	ErrQuotaExceeded = errors.New("api quota exceeded")

	// ErrSearchFailed wraps any non-quota failure of the search call.
	ErrSearchFailed = errors.New("search failed")

	// ErrDuplicate is returned by the catalog store when the video id already exists.
	ErrDuplicate = errors.New("video already exists")

	// ErrRunInProgress is returned when another process holds the ingestion lock.
	ErrRunInProgress = errors.New("ingestion run already in progress")
)
