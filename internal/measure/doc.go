// Package measure obtains packet loss ratios by shelling out to the
// system ping utility and parsing its summary line
// ("10 packets transmitted, 9 received, 10% packet loss, time 9012ms").
package measure
