// Package mapping describes mapped statements and resolves their SQL and parameter values.
package mapping
