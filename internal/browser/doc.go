// Package browser wraps chromedp behind the small set of page operations the
// pipeline needs: navigation, markup capture, clicks, screenshots, cookie
// transfer, and download completion. Consumers declare their own narrow
// interfaces over *Page so the rest of the pipeline stays testable without a
// live browser.
package browser
