// Package chatstream consumes the chat event stream for the signed-in user.
//
// It depends on session.Credentials only: the token authorizes the stream
// and the role selects which chat features are shown.
package chatstream
