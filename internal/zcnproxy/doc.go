// Package zcnproxy exposes the zcncore records to local callers as live proxies.
//
// Each type is a thin view over bind.Object built from the record's class.
// Getters and setters are boundary calls; nothing is cached.
package zcnproxy
