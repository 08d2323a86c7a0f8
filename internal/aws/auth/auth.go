// Package auth extracts the authenticated user from API Gateway
// authorizer output.
package auth

import "fmt"

// UserId reads the Cognito subject out of the request authorizer. The
// gateway has already validated the JWT, so a missing subject means a
// misconfigured route and is reported as an error, not a panic.
func UserId(authorizer interface{}) (string, error) {
	fields, ok := authorizer.(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("authorizer is not a map")
	}
	jwt, ok := fields["jwt"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("authorizer carries no jwt")
	}
	claims, ok := jwt["claims"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("jwt carries no claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("claims carry no subject")
	}
	return sub, nil
}
