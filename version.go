// Package jlaunch launches a Java runtime with an argument file and reports
// what it printed and how it exited.
package jlaunch

// Version is the jlaunch release version.
const Version = "0.3.0"
