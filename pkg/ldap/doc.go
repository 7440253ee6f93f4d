// Package ldapstore looks up users and their OTP shared secrets in an LDAP
// directory. Store satisfies dispatch.SecretStore.
package ldapstore
