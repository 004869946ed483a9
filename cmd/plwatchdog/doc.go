/*
Plwatchdog measures packet loss toward a target host and restarts a
Vodafone Station router at a fixed time of day when the loss is too high.

Usage:

	PLWD_ROUTER_PASSWORD=... plwatchdog [-v]

All settings are environment variables prefixed with PLWD_; a .env file in
the working directory is read as well. Run with --help for the full list.
*/
package main
