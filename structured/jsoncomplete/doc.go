// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package jsoncomplete turns a truncated JSON prefix into syntactically valid
JSON by computing a cut point and a minimal suffix.

# 概述

Language models emit JSON token by token, so at any point in a stream the
accumulated text may stop mid-string, mid-number, inside an unfinished
literal, after a dangling comma or with several containers still open.
Complete inspects such a prefix and reports one of:

  - Result.Valid: the text is already a complete document;
  - Result{TruncateAt, Suffix, Drop}: text[:TruncateAt] with the bytes at
    Drop removed, followed by Suffix, is valid JSON;
  - an error: ErrDepthExceeded, ErrNotCompletable or ErrMalformed.

# 策略

Two policies share one recursion:

  - Conservative keeps every complete token that has arrived and closes
    open structures with placeholders (a key without a value becomes
    "key": null).
  - Repair drops a trailing incomplete key or dangling member together with
    its preceding comma, drops elements that cannot be completed, strips
    trailing commas before closers (`[1,2,]`, `{"a":1,}`) and treats empty
    input as {}. Conservative rejects such commas as ErrMalformed.

Both policies close containers innermost-first and never leave a comma
immediately before a closer.

# 并发

The package holds no state. Complete may be called from any number of
goroutines; recursion is bounded by Options.MaxDepth.
*/
package jsoncomplete
