package service

// requireAuth 调用方必须是指定的主体
func requireAuth(caller, required string) error {
	if caller == "" || caller != required {
		return Unauthorized("missing authority of %s", required)
	}
	return nil
}
