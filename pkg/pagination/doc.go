// Package pagination follows MCP cursor pagination on the client side.
//
// List methods such as tools/list return an opaque nextCursor while more
// results remain. FetchAll requests pages until the cursor is empty and guards
// against servers that loop or never terminate:
//
//	tools, err := pagination.FetchAll(ctx, func(ctx context.Context, cursor string) ([]protocol.Tool, string, error) {
//		var res protocol.ListToolsResult
//		if err := send(ctx, protocol.MethodListTools, protocol.ListToolsParams{Cursor: cursor}, &res); err != nil {
//			return nil, "", err
//		}
//		return res.Tools, res.NextCursor, nil
//	})
package pagination
