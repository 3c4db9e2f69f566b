package browser

import (
	"encoding/json"
	"fmt"
)

// DefaultBinding is the CDP runtime binding the page reports occurrences to.
const DefaultBinding = "__scrollprobeEmit"

// installScript registers every element matching selectors together with its
// offset-parent chain and wires load/resize/scroll listeners to the binding.
// It evaluates to the number of tracked elements.
func installScript(binding string, selectors []string) (string, error) {
	name, err := json.Marshal(binding)
	if err != nil {
		return "", fmt.Errorf("encode binding name: %w", err)
	}
	sels, err := json.Marshal(selectors)
	if err != nil {
		return "", fmt.Errorf("encode selectors: %w", err)
	}
	return fmt.Sprintf(`(() => {
  const emit = window[%[1]s];
  const state = window.__scrollprobe || (window.__scrollprobe = {nodes: new Map(), tracked: [], seq: 0, wired: false});
  const idOf = (el) => {
    if (!el.dataset.scrollprobeId) {
      el.dataset.scrollprobeId = el.id ? el.id : "sp-" + (++state.seq);
    }
    return el.dataset.scrollprobeId;
  };
  state.register = (el) => {
    const chain = [];
    for (let n = el; n; n = n.offsetParent) chain.unshift(n);
    for (const n of chain) {
      const id = idOf(n);
      if (!state.nodes.has(id)) state.nodes.set(id, n);
    }
    return idOf(el);
  };
  for (const sel of %[2]s) {
    for (const el of document.querySelectorAll(sel)) {
      const id = state.register(el);
      if (!state.tracked.includes(id)) state.tracked.push(id);
    }
  }
  if (!state.wired && typeof emit === "function") {
    state.wired = true;
    const send = (type) => emit(JSON.stringify({type, y: window.scrollY}));
    window.addEventListener("resize", () => send("resize"), {passive: true});
    window.addEventListener("scroll", () => send("scroll"), {passive: true});
    if (document.readyState === "complete") {
      send("load");
    } else {
      window.addEventListener("load", () => send("load"), {once: true});
    }
  }
  return state.tracked.length;
})()`, name, sels), nil
}

// snapshotScript reads the layout of every registered node. Offset parents
// that appeared since the last snapshot are registered first.
const snapshotScript = `(() => {
  const state = window.__scrollprobe;
  if (!state) return null;
  for (const el of Array.from(state.nodes.values())) {
    if (el.isConnected) state.register(el);
  }
  const nodes = [];
  for (const [id, el] of state.nodes) {
    if (!el.isConnected) continue;
    const p = el.offsetParent;
    const parent = p && p.dataset && p.dataset.scrollprobeId ? p.dataset.scrollprobeId : "";
    nodes.push({id, parent, top: el.offsetTop, height: el.clientHeight});
  }
  return {
    viewport_height: window.innerHeight,
    content_height: document.documentElement.scrollHeight,
    scroll_y: window.scrollY,
    tracked: state.tracked,
    nodes,
  };
})()`

func scrollScript(y float64) string {
	return fmt.Sprintf("(() => { window.scrollTo(0, %g); return window.scrollY; })()", y)
}
