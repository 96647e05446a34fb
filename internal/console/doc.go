// Package console composes the session manager, route guard and navigation
// effect into the layout-level gate that every page of the console sits
// behind.
package console
