// Package production provides production integrations for stores: action
// history inspection with YAML/JSON export, channel publishing and WebSocket
// state streaming.
package production
