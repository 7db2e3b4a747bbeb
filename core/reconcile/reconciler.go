// Package reconcile implements the Reconciler interface.
// The storage text is the source of truth for which attachments matter: a
// record whose token no longer appears is orphaned and dropped before
// persisting, without the surrounding UI having to track deletions.
package reconcile

import (
	"strconv"

	"richsync/core"
)

// AttachmentReconciler filters and orders image records by the tokens
// actually present in the storage text.
type AttachmentReconciler struct{}

// New creates an AttachmentReconciler.
func New() *AttachmentReconciler {
	return &AttachmentReconciler{}
}

// Reconcile returns the records whose id occurs in the storage text, ordered
// by first appearance of their token. A duplicated token counts its record
// once; records with no token are dropped.
func (r *AttachmentReconciler) Reconcile(storageText string, images []core.ImageRecord) []core.ImageRecord {
	order := referencedIDs(storageText)
	if len(order) == 0 {
		return nil
	}

	byID := make(map[int64]core.ImageRecord, len(images))
	for _, img := range images {
		byID[img.ID] = img
	}

	used := make([]core.ImageRecord, 0, len(order))
	for _, id := range order {
		if img, ok := byID[id]; ok {
			used = append(used, img)
		}
	}
	return used
}

// referencedIDs scans the text left to right and collects token ids in order
// of first appearance.
func referencedIDs(storageText string) []int64 {
	var order []int64
	seen := make(map[int64]bool)
	for _, m := range core.TokenPattern.FindAllStringSubmatch(storageText, -1) {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	return order
}
