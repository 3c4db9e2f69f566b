// Package browser hosts the scroll responder inside a headless Chrome tab via
// chromedp. A Session registers the tracked elements and their offset-parent
// chains in the page, reports load/resize/scroll occurrences through a CDP
// runtime binding, and takes layout snapshots that are applied to a
// dom.Document owned by the host loop.
package browser
