// internal/snapshot/script.go
package snapshot

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/skryptik/sift-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// walkerTemplate is the in-page element walker. It stamps every surfaced
// element with a data-sift-id attribute and returns the element list as a
// plain array, so both backends share one extraction path. Roles prefer the
// explicit ARIA role attribute and fall back to a tag-derived default;
// elements with neither get an empty role that the Go side normalizes.
//
// The walk is document order. Downstream code depends on that order, so the
// script must never sort or group.
const walkerTemplate = `(() => {
	const maxText = %d;

	document.querySelectorAll('[data-sift-id]').forEach(el => el.removeAttribute('data-sift-id'));

	const interactiveTags = new Set(['a', 'button', 'input', 'textarea', 'select', 'details', 'summary']);
	const skippedTags = new Set(['script', 'style', 'svg', 'path', 'noscript', 'meta', 'link', 'head', 'title']);

	const clean = (value) => {
		if (!value) return '';
		const collapsed = value.replace(/\s+/g, ' ').trim();
		return collapsed.length > maxText ? collapsed.slice(0, maxText) : collapsed;
	};

	const roleOf = (el) => {
		const explicit = (el.getAttribute('role') || '').trim().toLowerCase();
		if (explicit) return explicit;
		const tag = el.tagName.toLowerCase();
		switch (tag) {
			case 'a': return 'link';
			case 'button': return 'button';
			case 'img': return 'img';
			case 'select': return 'combobox';
			case 'textarea': return 'textbox';
			case 'nav': return 'navigation';
			case 'input': {
				const type = (el.getAttribute('type') || 'text').toLowerCase();
				if (type === 'search') return 'searchbox';
				if (type === 'checkbox') return 'checkbox';
				if (type === 'radio') return 'radio';
				if (type === 'submit' || type === 'button') return 'button';
				return 'textbox';
			}
		}
		if (/^h[1-6]$/.test(tag)) return 'heading';
		return '';
	};

	const isInteractive = (el) => {
		const tag = el.tagName.toLowerCase();
		if (interactiveTags.has(tag)) return true;
		const role = (el.getAttribute('role') || '').toLowerCase();
		if (['button', 'link', 'checkbox', 'menuitem', 'tab', 'textbox', 'searchbox', 'combobox', 'option'].includes(role)) return true;
		const tabIndex = el.getAttribute('tabindex');
		if (tabIndex !== null && tabIndex !== '-1') return true;
		return el.onclick != null;
	};

	const isVisible = (el) => {
		if (el.getAttribute('aria-hidden') === 'true') return false;
		const rect = el.getBoundingClientRect();
		if (rect.width <= 0 || rect.height <= 0) return false;
		const style = window.getComputedStyle(el);
		return style.visibility !== 'hidden' && style.display !== 'none' && style.opacity !== '0';
	};

	const inViewport = (rect) =>
		rect.top < window.innerHeight && rect.bottom > 0 &&
		rect.left < window.innerWidth && rect.right > 0;

	const ownText = (el) => {
		let text = '';
		for (const child of el.childNodes) {
			if (child.nodeType === Node.TEXT_NODE) text += child.textContent;
		}
		return text;
	};

	const results = [];
	let counter = 1;

	for (const el of document.body.querySelectorAll('*')) {
		const tag = el.tagName.toLowerCase();
		if (skippedTags.has(tag)) continue;
		if (!isVisible(el)) continue;

		const interactive = isInteractive(el);
		let text = clean(interactive ? (el.innerText || '') : ownText(el));
		if (!text) text = clean(el.getAttribute('aria-label') || el.getAttribute('placeholder') || el.getAttribute('title') || '');

		// Inert, textless nodes are layout plumbing; surfacing them would
		// only inflate the candidate set the caller pays tokens for.
		if (!interactive && !text) continue;

		const id = 's' + counter++;
		el.setAttribute('data-sift-id', id);

		const rect = el.getBoundingClientRect();
		results.push({
			id: id,
			role: roleOf(el),
			text: text,
			bbox: { x: rect.x, y: rect.y, width: rect.width, height: rect.height },
			interactive: interactive,
			in_viewport: inViewport(rect),
		});
	}

	return results;
})()`

// walkerScript renders the walker with the configured text cap.
func walkerScript(maxTextLength int) string {
	return fmt.Sprintf(walkerTemplate, maxTextLength)
}

// decodeElements converts a backend's raw evaluate result into normalized
// elements. Both backends hand the walker output over as arbitrary JSON.
func decodeElements(raw any) ([]schemas.Element, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode walker result: %w", err)
	}

	var elements []schemas.Element
	if err := json.Unmarshal(buf, &elements); err != nil {
		return nil, fmt.Errorf("failed to decode walker result: %w", err)
	}

	schemas.Normalize(elements)
	return elements, nil
}
