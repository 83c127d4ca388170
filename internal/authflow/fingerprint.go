package authflow

import (
	"fmt"
	"time"
)

// riskContextV1 is the browser fingerprint accounts.login expects in its
// riskContext field. It is opaque configuration, not logic: the structure was
// captured from the official web client and must be sent as-is, with only the
// user agent (b6) and wall-clock time (b8) slots filled at send time. Do not
// derive the other fields from the runtime environment.
const riskContextV1 = `{"b0":4494,"b1":[0,2,2,0],"b2":2,"b3":[],"b4":2,"b5":1,` +
	`"b6":%q,` +
	`"b7":[{"name":"PDF Viewer","filename":"internal-pdf-viewer","length":2},` +
	`{"name":"Chrome PDF Viewer","filename":"internal-pdf-viewer","length":2},` +
	`{"name":"Chromium PDF Viewer","filename":"internal-pdf-viewer","length":2},` +
	`{"name":"Microsoft Edge PDF Viewer","filename":"internal-pdf-viewer","length":2},` +
	`{"name":"WebKit built-in PDF","filename":"internal-pdf-viewer","length":2}],` +
	`"b8":%q,"b9":0,"b10":{"state":"denied"},"b11":false,"b13":[5,"440|956|24",false,true]}`

func riskContext(now time.Time) string {
	return fmt.Sprintf(riskContextV1, BrowserUserAgent, now.Format("15:04:05"))
}
