// Package catalog holds the descriptors the resolution engine works on:
// firmware images, attached boards and target test images, together with
// the hardware identities (HDK id, board id) that relate them.
//
// The three catalogs are produced independently:
//
//   - LoadReleaseBundle reads a directory of pre-built firmware images
//   - LoadBoardInventory reads the list of attached boards from yaml
//   - LoadTargetBundle pairs <name>.hex and <name>.bin target images
//
// Names are mapped to identities through an IDTable, which is constructed
// explicitly and passed in. There is no package level state.
package catalog
