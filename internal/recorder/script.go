package recorder

import "fmt"

// BindingName is the host function the page posts captured signals to.
const BindingName = "record_event"

// RecorderScript installs the passive page listeners. It runs on every new
// document and once more on the document already loaded; the per-document
// __recorderInstalled flag keeps listeners from being attached twice.
var RecorderScript = fmt.Sprintf(`
(() => {
  if (window.__recorderInstalled) return;
  window.__recorderInstalled = true;

  let pointer = null;

  function record(type, data) {
    const post = window[%[1]q];
    if (typeof post !== "function") return;
    post(JSON.stringify({
      type: type,
      data: data,
      url: window.location.href,
      time: Date.now()
    }));
  }

  function keyData(e) {
    return {
      key: e.key, code: e.code,
      ctrl: e.ctrlKey, alt: e.altKey, shift: e.shiftKey, meta: e.metaKey
    };
  }

  document.addEventListener("mousemove", e => {
    pointer = { x: e.clientX, y: e.clientY };
    record("mousemove", { x: e.clientX, y: e.clientY });
  }, { passive: true });

  document.addEventListener("click", e => {
    record("click", { x: e.clientX, y: e.clientY, button: e.button });
  }, { passive: true });

  document.addEventListener("keydown", e => record("keydown", keyData(e)), { passive: true });
  document.addEventListener("keyup", e => record("keyup", keyData(e)), { passive: true });

  document.addEventListener("input", e => {
    const t = e.target;
    if (t && t.value !== undefined) {
      record("input", {
        selector: t.tagName + (t.id ? "#" + t.id : ""),
        value: t.value
      });
    }
  }, { passive: true });

  window.addEventListener("scroll", () => {
    record("scroll", { scrollX: window.scrollX, scrollY: window.scrollY });
  }, { passive: true });

  window.addEventListener("popstate", () => {
    record("urlchange", { url: window.location.href });
  });

  const pushState = history.pushState;
  history.pushState = function() {
    const result = pushState.apply(this, arguments);
    record("urlchange", { url: window.location.href });
    return result;
  };

  if (window.visualViewport) {
    let lastScale = window.visualViewport.scale;
    window.visualViewport.addEventListener("resize", () => {
      const s = window.visualViewport.scale;
      if (s === lastScale) return;
      const data = { oldScale: lastScale, newScale: s };
      if (pointer) {
        data.x = pointer.x;
        data.y = pointer.y;
      }
      record("zoom", data);
      lastScale = s;
    });
  }
})();
`, BindingName)
