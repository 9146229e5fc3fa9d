package browser

import (
	"encoding/json"
	"fmt"
	"txexport/internal/capture"
)

// outcome colors of marked line items
const (
	colorCaptured = "#00aa00"
	colorSkipped  = "#ffa500"
	colorFailed   = "#ff0000"
)

func outlineColor(outcome capture.Outcome) string {
	switch outcome {
	case capture.Captured:
		return colorCaptured
	case capture.Skipped:
		return colorSkipped
	}
	return colorFailed
}

// jsString quotes s as a javascript string literal.
func jsString(s string) string {
	out, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return string(out)
}

func clickScript(selector string, index int) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelectorAll(%s)[%d];
	if (!el) {
		return false;
	}
	el.click();
	return true;
})()`, jsString(selector), index)
}

func markScript(selector string, index int, outcome capture.Outcome) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelectorAll(%s)[%d];
	if (!el) {
		return false;
	}
	el.style.border = "2px solid %s";
	el.dataset.txexport = %s;
	return true;
})()`, jsString(selector), index, outlineColor(outcome), jsString(outcome.String()))
}

// armWatchScript installs a MutationObserver on the first element matching
// container. Its promise resolves once an added node is or contains an
// element matching content.
func armWatchScript(container, content string) string {
	return fmt.Sprintf(`(() => {
	const target = document.querySelector(%[1]s);
	if (!target) {
		return false;
	}
	if (window.__txexportWatch) {
		window.__txexportWatch.observer.disconnect();
	}
	const watch = {};
	watch.changed = new Promise((resolve) => {
		watch.observer = new MutationObserver((mutations) => {
			const fresh = mutations.some((m) => Array.from(m.addedNodes).some((node) =>
				node.nodeType === Node.ELEMENT_NODE &&
				(node.matches(%[2]s) || node.querySelector(%[2]s) !== null)));
			if (fresh) {
				watch.observer.disconnect();
				resolve(true);
			}
		});
		watch.observer.observe(target, { childList: true, subtree: true });
	});
	window.__txexportWatch = watch;
	return true;
})()`, jsString(container), jsString(content))
}

const awaitWatchScript = `window.__txexportWatch
	? window.__txexportWatch.changed
	: Promise.reject(new Error("content watch is gone"))`

const cancelWatchScript = `(() => {
	if (window.__txexportWatch) {
		window.__txexportWatch.observer.disconnect();
		window.__txexportWatch = undefined;
	}
	return true;
})()`
